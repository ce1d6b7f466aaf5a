// Command uiverify drives the task dashboard through a headless browser and
// captures light/dark mode screenshots as verification evidence.
package main

import "os"

func main() {
	os.Exit(execute(newGlobalState(), os.Args[1:]))
}
