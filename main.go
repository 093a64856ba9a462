package main

import "github.com/officeflow/attendance/cmd"

func main() {
	cmd.Execute()
}
