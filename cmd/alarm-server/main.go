package main

import "github.com/oshokin/alarm-scheduler/cmd/alarm-server/cmd"

func main() {
	cmd.Execute()
}
