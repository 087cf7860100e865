// Command tplcache manages the template cache.
//
//	tplcache flush --config tplcache.yaml
package main

import (
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv))
}
