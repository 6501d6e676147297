package main

import "github.com/dbsmedya/lmsarchive/cmd/lmsarchive/cmd"

func main() {
	cmd.Execute()
}
