package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/corvusdb/corvusdb/config"
	"github.com/corvusdb/corvusdb/index"
	"github.com/corvusdb/corvusdb/index/bpt"
	"github.com/corvusdb/corvusdb/index/uli"
)

func newCmd_CreateIndex() *cli.Command {
	var configPath string
	var databaseUUID string
	var tableID uint
	var indexID uint64
	var indexType string
	var keySize int
	var valueSize int
	var signedKeys bool
	var descending bool
	return &cli.Command{
		Name:  "create-index",
		Usage: "Create a new index data directory; a B+ tree index also gets its data file (linear index data files are created on first insert).",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Path of the engine config file",
				Destination: &configPath,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "database",
				Usage:       "Database UUID the index belongs to",
				Destination: &databaseUUID,
				Required:    true,
			},
			&cli.UintFlag{
				Name:        "table",
				Usage:       "Table id the index belongs to",
				Destination: &tableID,
				Required:    true,
			},
			&cli.Uint64Flag{
				Name:        "index-id",
				Usage:       "Index id",
				Destination: &indexID,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "type",
				Usage:       "Index type: bplustree or linear",
				Destination: &indexType,
				Value:       "linear",
			},
			&cli.IntFlag{
				Name:        "key-size",
				Usage:       "Key size in bytes (1, 2, 4 or 8 for linear indexes)",
				Destination: &keySize,
				Value:       8,
			},
			&cli.IntFlag{
				Name:        "value-size",
				Usage:       "Value size in bytes",
				Destination: &valueSize,
				Value:       8,
			},
			&cli.BoolFlag{
				Name:        "signed",
				Usage:       "Keys are signed integers",
				Destination: &signedKeys,
			},
			&cli.BoolFlag{
				Name:        "descending",
				Usage:       "Indexed column sorts descending",
				Destination: &descending,
			},
		},
		Action: func(cctx *cli.Context) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			db, err := uuid.Parse(databaseUUID)
			if err != nil {
				return fmt.Errorf("invalid database uuid: %w", err)
			}
			id := index.FullIndexID{Database: db, TableID: uint32(tableID), IndexID: indexID}
			dataDir := indexDataDir(cfg, id)

			traits := index.UintKeyTraits(keySize)
			if signedKeys {
				traits = index.IntKeyTraits(keySize)
			}
			direction := index.Ascending
			if descending {
				direction = index.Descending
			}

			switch indexType {
			case "linear":
				idx, err := uli.Create(dataDir, id, traits, valueSize, direction, cfg.DataFileSize,
					uli.NodeCacheCapacity(cfg.NodeCacheCapacity),
					uli.FileCacheCapacity(cfg.FileCacheCapacity))
				if err != nil {
					return err
				}
				defer idx.Close()
			case "bplustree":
				idx, err := bpt.Create(dataDir, id, keySize, valueSize, traits.Compare,
					bpt.NodeCacheCapacity(cfg.NodeCacheCapacity))
				if err != nil {
					return err
				}
				defer idx.Close()
			default:
				return fmt.Errorf("unsupported index type %q", indexType)
			}
			klog.Infof("created %s index in %s", indexType, dataDir)
			return nil
		},
	}
}

// indexDataDir lays index data directories out under the configured data
// root: <data_dir>/<database>/t<table>/i<index>.
func indexDataDir(cfg config.Config, id index.FullIndexID) string {
	return filepath.Join(cfg.DataDir, id.Database.String(),
		fmt.Sprintf("t%d", id.TableID), fmt.Sprintf("i%d", id.IndexID))
}
