package main

import (
	"os"

	"github.com/pvgeo/pvinstall"
)

func main() {
	os.Exit(pvinstall.Run())
}
