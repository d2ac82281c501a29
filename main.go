package main

import (
	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/regman/cmd"
)

// init sets the default log level; --debug, --trace and --log-level override it.
func init() {
	logrus.SetLevel(logrus.InfoLevel)
}

func main() {
	cmd.Execute()
}
