package main

import "github.com/fundiconnect/fundi-go/cmd/fundi/cmd"

func main() {
	cmd.Execute()
}
