// Command crawl runs a product-URL crawl from the command line and prints the
// results as JSON.
package main

import "os"

func main() {
	if err := newRootCmd(newHTTPRunner).Execute(); err != nil {
		os.Exit(1)
	}
}
