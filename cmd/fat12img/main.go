package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/fat12img/fat12img/blockdev"
	"github.com/fat12img/fat12img/disks"
	"github.com/fat12img/fat12img/fat12"
	"github.com/fat12img/fat12img/grub"
)

// Each subcommand attaches its own image, performs one operation, and
// flushes and detaches before returning -- there is no persistent shell
// session. This keeps the tool scriptable from a host shell instead of
// reimplementing one; spec.md treats the interactive shell, `$var`
// substitution, and scripting as an external collaborator out of scope
// for this engine.
func main() {
	app := &cli.App{
		Name:  "fat12img",
		Usage: "Create, inspect, and modify FAT12 floppy/hard-disk images",
		Commands: []*cli.Command{
			initCommand(),
			formatCommand(),
			lsCommand(),
			mkdirCommand(),
			touchCommand(),
			writeCommand(),
			readCommand(),
			rmCommand(),
			grubCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fat12img: %s", err)
	}
}

func attachDevice(path string) (*blockdev.Device, error) {
	return blockdev.Create(path, blockdev.MediaFloppy)
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Truncate and zero-fill an image file",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "bps", Value: 512, Usage: "bytes per sector"},
			&cli.UintFlag{Name: "count", Usage: "total sectors"},
			&cli.StringFlag{Name: "geometry", Usage: "named preset, e.g. fd1440 (overrides --bps/--count)"},
			&cli.BoolFlag{Name: "hdd", Usage: "mark the image as a hard disk rather than a floppy"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("init requires a path")
			}

			media := blockdev.MediaFloppy
			if c.Bool("hdd") {
				media = blockdev.MediaHardDisk
			}
			dev, err := blockdev.Create(path, media)
			if err != nil {
				return err
			}
			defer dev.Destroy()

			bps, count := c.Uint("bps"), c.Uint("count")
			if geom := c.String("geometry"); geom != "" {
				g, err := disks.GetGeometry(geom)
				if err != nil {
					return err
				}
				bps, count = g.BytesPerSector, g.TotalSectors
			}
			if count == 0 {
				return fmt.Errorf("init requires --count or --geometry")
			}
			return dev.Init(bps, count)
		},
	}
}

func formatCommand() *cli.Command {
	return &cli.Command{
		Name:      "format",
		Usage:     "Format an initialized image as FAT12",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "label", Usage: "volume label"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("format requires a path")
			}
			dev, err := attachDevice(path)
			if err != nil {
				return err
			}
			defer dev.Destroy()

			return fat12.Format(dev, fat12.FormatOptions{VolumeLabel: c.String("label")})
		},
	}
}

// withMountedDir attaches path, mounts it, navigates to dir (a single
// root-child directory name, or "" for root), and calls fn.
func withMountedDir(path, dir string, fn func(fs *fat12.FileSystem) error) error {
	dev, err := attachDevice(path)
	if err != nil {
		return err
	}
	defer dev.Destroy()

	fs, err := fat12.Open("FAT12", dev)
	if err != nil {
		return err
	}

	if dir != "" {
		node, err := fs.GetNode(dir)
		if err != nil {
			return err
		}
		if err := fs.SetDirectory(node); err != nil {
			return err
		}
	}

	if err := fn(fs); err != nil {
		return err
	}
	return fs.Unmount()
}

func lsCommand() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "List the contents of a directory",
		ArgsUsage: "<path> [dir]",
		Action: func(c *cli.Context) error {
			path, dir := c.Args().Get(0), c.Args().Get(1)
			if path == "" {
				return fmt.Errorf("ls requires an image path")
			}
			return withMountedDir(path, dir, func(fs *fat12.FileSystem) error {
				for _, node := range fs.GetDirectoryList() {
					kind := "f"
					if node.IsDirectory() {
						kind = "d"
					}
					fmt.Printf("%s %8d %s\n", kind, node.Size, node.Name)
				}
				return nil
			})
		},
	}
}

func mkdirCommand() *cli.Command {
	return &cli.Command{
		Name:      "mkdir",
		Usage:     "Create a subdirectory of root",
		ArgsUsage: "<path> <name>",
		Action: func(c *cli.Context) error {
			path, name := c.Args().Get(0), c.Args().Get(1)
			if path == "" || name == "" {
				return fmt.Errorf("mkdir requires an image path and a name")
			}
			return withMountedDir(path, "", func(fs *fat12.FileSystem) error {
				_, err := fs.CreateDir(name)
				return err
			})
		},
	}
}

func touchCommand() *cli.Command {
	return &cli.Command{
		Name:      "touch",
		Usage:     "Create an empty file",
		ArgsUsage: "<path> <name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "root-child directory to create the file in"},
		},
		Action: func(c *cli.Context) error {
			path, name := c.Args().Get(0), c.Args().Get(1)
			if path == "" || name == "" {
				return fmt.Errorf("touch requires an image path and a name")
			}
			return withMountedDir(path, c.String("dir"), func(fs *fat12.FileSystem) error {
				_, err := fs.CreateFile(name, 0)
				return err
			})
		},
	}
}

func writeCommand() *cli.Command {
	return &cli.Command{
		Name:      "write",
		Usage:     "Write a host file's bytes into an image file",
		ArgsUsage: "<path> <name> <host-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "root-child directory the file lives in"},
		},
		Action: func(c *cli.Context) error {
			path, name, hostFile := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)
			if path == "" || name == "" || hostFile == "" {
				return fmt.Errorf("write requires an image path, a name, and a host file")
			}
			data, err := os.ReadFile(hostFile)
			if err != nil {
				return err
			}
			return withMountedDir(path, c.String("dir"), func(fs *fat12.FileSystem) error {
				return fs.Write(name, data)
			})
		},
	}
}

func readCommand() *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "Read an image file's bytes out to a host file",
		ArgsUsage: "<path> <name> <host-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "root-child directory the file lives in"},
		},
		Action: func(c *cli.Context) error {
			path, name, hostFile := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)
			if path == "" || name == "" || hostFile == "" {
				return fmt.Errorf("read requires an image path, a name, and a host file")
			}
			return withMountedDir(path, c.String("dir"), func(fs *fat12.FileSystem) error {
				data, err := fs.Read(name)
				if err != nil {
					return err
				}
				return os.WriteFile(hostFile, data, 0o644)
			})
		},
	}
}

func rmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Remove a file or empty subdirectory",
		ArgsUsage: "<path> <name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "root-child directory the entry lives in"},
		},
		Action: func(c *cli.Context) error {
			path, name := c.Args().Get(0), c.Args().Get(1)
			if path == "" || name == "" {
				return fmt.Errorf("rm requires an image path and a name")
			}
			return withMountedDir(path, c.String("dir"), func(fs *fat12.FileSystem) error {
				return fs.Remove(name)
			})
		},
	}
}

func grubCommand() *cli.Command {
	return &cli.Command{
		Name:      "grub",
		Usage:     "Install legacy GRUB stage1/stage2 onto an image",
		ArgsUsage: "<path> <grub-source-dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "d", Usage: "install path (single root-child directory, default GRUB)"},
			&cli.StringFlag{Name: "c", Usage: "config file name"},
			&cli.StringFlag{Name: "n", Usage: "OS name"},
			&cli.StringFlag{Name: "k", Usage: "kernel name"},
		},
		Action: func(c *cli.Context) error {
			path, sourceDir := c.Args().Get(0), c.Args().Get(1)
			if path == "" || sourceDir == "" {
				return fmt.Errorf("grub requires an image path and a GRUB source directory")
			}

			dev, err := attachDevice(path)
			if err != nil {
				return err
			}
			defer dev.Destroy()

			fs, err := fat12.Open("FAT12", dev)
			if err != nil {
				return err
			}

			cfg := grub.Config{
				InstallPath: c.String("d"),
				ConfigFile:  c.String("c"),
				OSName:      c.String("n"),
				KernelName:  c.String("k"),
			}
			return grub.Install(fs, sourceDir, cfg)
		},
	}
}
