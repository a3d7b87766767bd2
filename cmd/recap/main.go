// Command recap lists data locations and infers their schemas.
package main

func main() {
	Execute()
}
