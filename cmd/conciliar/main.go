package main

import (
	"os"

	"github.com/conciliar-dev/conciliar/internal/commands"
)

func main() {
	os.Exit(commands.Execute())
}
