package main

import "vouchercat/cmd"

func main() {
	cmd.Execute()
}
