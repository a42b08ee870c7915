package main

import "github.com/oshokin/dmd-downloader/cmd/dmd-downloader/cmd"

func main() {
	cmd.Execute()
}
