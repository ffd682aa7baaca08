package main

import "stream2media/cmd"

func main() {
	cmd.Execute()
}
