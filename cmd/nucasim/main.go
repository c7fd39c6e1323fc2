// Command nucasim replays memory traces through a NUCA cache model.
package main

import "github.com/sarchlab/nucasim/cmd"

func main() {
	cmd.Execute()
}
