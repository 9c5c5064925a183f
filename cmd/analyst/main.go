// Command analyst answers business questions in plain language by writing
// SQL, running it, and summarizing the result.
package main

func main() {
	Execute()
}
