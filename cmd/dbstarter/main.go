// Command dbstarter bootstraps SQLite databases from definition files.
package main

import "github.com/mesh-intelligence/dbstarter/internal/cli"

func main() {
	cli.Execute()
}
