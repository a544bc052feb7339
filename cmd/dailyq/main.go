// Command dailyq はDailyQクライアントコアのブリッジサーバーを起動する。
//
//	dailyq [serve|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/dailyq/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "dailyq: %v\n", err)
		os.Exit(1)
	}
}
