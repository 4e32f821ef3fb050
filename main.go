package main

import "github.com/audioscribelab/meetscribe/cmd"

func main() {
	cmd.Execute()
}
