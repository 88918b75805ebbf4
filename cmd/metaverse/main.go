// Command metaverse runs the island world server and its time and frame tools.
package main

func main() {
	Execute()
}
