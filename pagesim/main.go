// pagesim simulates an inverted page table with aging page replacement.
package main

import "github.com/sarchlab/pagesim/pagesim/cmd"

func main() {
	cmd.Execute()
}
