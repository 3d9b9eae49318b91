package main

import "github.com/JoahanSP/SECURENET/cmd"

func main() {
	cmd.Execute()
}
