package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/corvusdb/corvusdb/index"
	"github.com/corvusdb/corvusdb/pbe"
)

func newCmd_VerifyIndex() *cli.Command {
	return &cli.Command{
		Name:      "verify-index",
		Usage:     "Check the structural invariants of a B+ tree index data file.",
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
			if st.Size()%index.NodeSize != 0 || st.Size() < 2*index.NodeSize {
				return fmt.Errorf("%w: invalid size %d", index.ErrFileCorrupted, st.Size())
			}
			nodeCount := uint64(st.Size()/index.NodeSize) - 1

			var buf [8]byte
			if _, err = f.ReadAt(buf[:], 0); err != nil {
				return err
			}
			rootNodeID, _ := pbe.Uint64(buf[:])
			if rootNodeID == 0 || rootNodeID > nodeCount {
				return fmt.Errorf("%w: stored root node id %d is outside the file", index.ErrMissingRoot, rootNodeID)
			}

			// Every node must carry a valid type byte and exactly one node
			// must carry a root type: the one the root pointer names.
			node := make([]byte, index.NodeSize)
			var rootCount int
			for nodeID := uint64(1); nodeID <= nodeCount; nodeID++ {
				if _, err = f.ReadAt(node, int64(nodeID)*index.NodeSize); err != nil {
					return err
				}
				nodeType := node[0]
				if nodeType > 3 {
					return fmt.Errorf("%w: node %d has invalid type %d", index.ErrNodeCorrupted, nodeID, nodeType)
				}
				isRoot := nodeType == 2 || nodeType == 3
				if isRoot {
					rootCount++
					if nodeID != rootNodeID {
						return fmt.Errorf("%w: node %d has a root type but the root pointer names node %d",
							index.ErrNodeCorrupted, nodeID, rootNodeID)
					}
				}
			}
			if rootCount != 1 {
				return fmt.Errorf("%w: found %d root nodes", index.ErrMissingRoot, rootCount)
			}

			klog.Infof("%s: %d nodes, root node %d, all invariants hold", path, nodeCount, rootNodeID)
			return nil
		},
	}
}
