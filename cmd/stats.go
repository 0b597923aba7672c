/*
Copyright © 2025 Ambor <saltbo@foxmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/eslsoft/lexloop/internal/app"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "显示数据库各表的行数与连接状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, cleanup, err := app.Initialize()
		if err != nil {
			return fmt.Errorf("初始化失败: %w", err)
		}
		defer cleanup()

		counts, err := container.DB.RowCounts(cmd.Context())
		if err != nil {
			return fmt.Errorf("统计失败: %w", err)
		}

		tables := make([]string, 0, len(counts))
		for table := range counts {
			tables = append(tables, table)
		}
		sort.Strings(tables)

		cmd.Printf("数据库: %s\n", container.DB.Driver)
		for _, table := range tables {
			cmd.Printf("  %-20s %d\n", table, counts[table])
		}

		pool := container.DB.DB.Stats()
		cmd.Printf("连接: 打开 %d, 空闲 %d, 等待 %d\n",
			pool.OpenConnections, pool.Idle, pool.WaitCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
