package main

import "geojournal/cmd"

func main() {
	cmd.Execute()
}
