package mocks

//go:generate mockgen -source=../internal/kafka/interfaces.go -destination=mock_kafka.go -package=mocks
//go:generate mockgen -source=../internal/kafka/producer.go -destination=mock_producer.go -package=mocks
//go:generate mockgen -source=../internal/store/session_store.go -destination=mock_store.go -package=mocks
//go:generate mockgen -source=../internal/graph/neo4j.go -destination=mock_graph.go -package=mocks
