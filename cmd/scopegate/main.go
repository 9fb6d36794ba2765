// Command scopegate is the CLI for the Scopegate resolution engine.
package main

import "github.com/scopegate/scopegate/cmd/scopegate/cmd"

func main() {
	cmd.Execute()
}
