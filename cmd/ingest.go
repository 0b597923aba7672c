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
	"time"

	"github.com/spf13/cobra"

	"github.com/eslsoft/lexloop/internal/app"
	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/ingest"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "从配置的数据源抓取学习素材",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := ingestOptions(cmd)
		if err != nil {
			return err
		}

		container, cleanup, err := app.Initialize()
		if err != nil {
			return fmt.Errorf("初始化失败: %w", err)
		}
		defer cleanup()

		if err := container.DB.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("迁移数据库失败: %w", err)
		}

		stats, err := container.Ingest.Run(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("抓取失败: %w", err)
		}
		printIngestStats(cmd, stats)
		return nil
	},
}

func ingestOptions(cmd *cobra.Command) (ingest.Options, error) {
	full, _ := cmd.Flags().GetBool("full")
	langTag, _ := cmd.Flags().GetString("language")
	levelTag, _ := cmd.Flags().GetString("level")

	opts := ingest.Options{Incremental: !full}
	if langTag != "" {
		opts.Language = entity.ParseLanguage(langTag)
		if opts.Language == entity.LanguageUnspecified {
			return opts, fmt.Errorf("%w: unknown language %q", entity.ErrInvalidInput, langTag)
		}
	}
	if levelTag != "" {
		opts.Level = entity.ParseLevel(levelTag)
		if opts.Level == entity.LevelUnspecified {
			return opts, fmt.Errorf("%w: unknown level %q", entity.ErrInvalidInput, levelTag)
		}
	}
	return opts, nil
}

func printIngestStats(cmd *cobra.Command, stats *ingest.Stats) {
	cmd.Printf("数据源: %d (成功 %d, 失败 %d, 兜底 %d)\n",
		stats.Sources, stats.Successes, stats.Failures, stats.Fallbacks)
	cmd.Printf("请求: %d (重试 %d, %.2f req/s)\n",
		stats.Requests, stats.Retries, stats.RequestsPerSecond())
	cmd.Printf("条目: 解析 %d, 写入 %d, 跳过 %d\n",
		stats.Parsed, stats.Written, stats.Skipped)
	cmd.Printf("耗时: %s\n", stats.Elapsed.Round(time.Millisecond))
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Bool("full", false, "全量模式：已存在的条目也重新写入")
	ingestCmd.Flags().String("language", "", "仅抓取指定语言 (en/ja)")
	ingestCmd.Flags().String("level", "", "仅抓取指定级别 (cet-4..cet-6, n5..n1)")
}
