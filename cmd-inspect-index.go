package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/corvusdb/corvusdb/index"
	"github.com/corvusdb/corvusdb/pbe"
)

func newCmd_InspectIndex() *cli.Command {
	return &cli.Command{
		Name:      "inspect-index",
		Usage:     "Print the header of an index data file.",
		ArgsUsage: "<data-file>",
		Action: func(cctx *cli.Context) error {
			path := cctx.Args().First()
			if path == "" {
				return fmt.Errorf("data file path is required")
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			st, err := f.Stat()
			if err != nil {
				return err
			}
			buf := make([]byte, index.FileHeaderSize)
			if _, err = f.ReadAt(buf, 0); err != nil {
				return err
			}

			fmt.Printf("File:       %s\n", path)
			fmt.Printf("Size:       %d (%d nodes + header page)\n", st.Size(), st.Size()/index.NodeSize-1)

			// A B+ tree file stores the root node id over the first 8 bytes
			// of the header page, so the header is only intact for linear
			// index files. Try the header first and fall back to the root
			// pointer.
			header := index.FileHeader{Type: index.TypeLinear}
			if _, err := header.UnmarshalFrom(buf); err == nil {
				fmt.Printf("Type:       %s\n", header.Type)
				fmt.Printf("Version:    %d\n", header.Version)
				fmt.Printf("Database:   %s\n", header.ID.Database)
				fmt.Printf("Table:      %d\n", header.ID.TableID)
				fmt.Printf("Index:      %d\n", header.ID.IndexID)
				return nil
			}
			rootNodeID, _ := pbe.Uint64(buf)
			fmt.Printf("Type:       %s (assumed)\n", index.TypeBPlusTree)
			fmt.Printf("Root node:  %d\n", rootNodeID)
			return nil
		},
	}
}
