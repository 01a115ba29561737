package main

import "github.com/MiladJoodi/WebRTC-Video-Conference/cmd"

func main() {
	cmd.Execute()
}
