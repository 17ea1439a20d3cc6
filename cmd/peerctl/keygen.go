package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-peerctl/internal/feature/auth"
)

type keygenFlags struct {
	keys  string
	label string
	key   string
	list  bool
}

func newKeygenCommand() *cobra.Command {
	f := &keygenFlags{}
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "向密钥库添加预共享密钥",
		Long: `生成一个随机预共享密钥（或使用 --key 指定）写入密钥库文件并打印。

文件不存在时创建；--list 只列出已有密钥的标识与标签。`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeygen(cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVar(&f.keys, "keys", "", "密钥库文件（必需）")
	cmd.Flags().StringVar(&f.label, "label", "", "密钥标签")
	cmd.Flags().StringVar(&f.key, "key", "", "使用指定密钥而不是随机生成")
	cmd.Flags().BoolVar(&f.list, "list", false, "列出已有密钥")
	if err := cmd.MarkFlagRequired("keys"); err != nil {
		panic(fmt.Sprintf("mark keys required: %v", err))
	}
	return cmd
}

func runKeygen(out io.Writer, f *keygenFlags) error {
	ks, err := auth.OpenFileKeyStore(f.keys)
	if err != nil {
		return err
	}

	if f.list {
		for _, rec := range ks.Records() {
			fmt.Fprintf(out, "%s  %s  %s\n", rec.ID, rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Label)
		}
		return nil
	}

	key := f.key
	if key == "" {
		if key, err = auth.GenerateKey(); err != nil {
			return err
		}
	}
	rec, err := ks.AddKey(key, f.label)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "id:  %s\nkey: %s\n", rec.ID, rec.Key)
	return nil
}
