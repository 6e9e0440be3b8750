// mlctl trains, submits, deploys and queries iris classifiers.
//
// Usage:
//
//	mlctl train   [--output=<path>] [--options=<yaml>]
//	mlctl submit  [--model-name=<name>] [--options=<yaml>] [--wait]
//	mlctl status  <model-id>
//	mlctl deploy  [--model-name=<name>@latest] [--endpoint-name=<name>]
//	mlctl predict [<endpoint-id> | --artifact=<path>] --instance=5.1,3.5,1.4,0.2
//	mlctl serve   [--artifact=<path>] [--port=8080]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
