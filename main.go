package main

import "github.com/alexalbu001/ecs-scaler/cmd"

func main() {
	cmd.Execute()
}
