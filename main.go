package main

import "github.com/jfmyers9/upnp-scribbles/cmd"

func main() {
	cmd.Execute()
}
