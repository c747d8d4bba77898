package main

import "github.com/oshokin/agrosmart/cmd/agrosmart-ctl/cmd"

func main() {
	cmd.Execute()
}
