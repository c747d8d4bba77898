package main

import "github.com/oshokin/agrosmart/cmd/agrosmart-server/cmd"

func main() {
	cmd.Execute()
}
