package toolchain

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/starford/timelapse/internal/workspace"
)

// Commands names the executables used for each operation.
type Commands struct {
	Tar           string `yaml:"tar"`
	GDALTranslate string `yaml:"gdal_translate"`
	GDALWarp      string `yaml:"gdalwarp"`
	GDALMerge     string `yaml:"gdal_merge"`
	GDALCalc      string `yaml:"gdal_calc"`
	GDALInfo      string `yaml:"gdalinfo"`
}

// DefaultCommands resolves every tool from PATH.
func DefaultCommands() Commands {
	return Commands{
		Tar:           "tar",
		GDALTranslate: "gdal_translate",
		GDALWarp:      "gdalwarp",
		GDALMerge:     "gdal_merge.py",
		GDALCalc:      "gdal_calc.py",
		GDALInfo:      "gdalinfo",
	}
}

// GDAL implements the raster operations with the GDAL utilities. Every
// output is written to its partial path and committed only on success.
type GDAL struct {
	runner Runner
	cmds   Commands
}

// NewGDAL creates the raster toolchain.
func NewGDAL(runner Runner, cmds Commands) *GDAL {
	return &GDAL{runner: runner, cmds: cmds}
}

// Rescale linearly maps [0, srcMax] onto the 8-bit range.
func (g *GDAL) Rescale(ctx context.Context, src, dst string, srcMax int) error {
	return g.produce(ctx, "rescale", dst, func(out string) []string {
		return []string{g.cmds.GDALTranslate,
			"-of", "GTiff", "-co", "COMPRESS=LZW",
			"-scale", "0", strconv.Itoa(srcMax), "0", "255",
			"-ot", "Byte", src, out}
	})
}

// Reproject warps src into srs and crops it to the cutline polygon.
func (g *GDAL) Reproject(ctx context.Context, src, dst, srs, cutline string) error {
	return g.produce(ctx, "reproject", dst, func(out string) []string {
		return []string{g.cmds.GDALWarp,
			"-of", "GTiff", "-t_srs", srs,
			"-cutline", cutline, "-crop_to_cutline",
			src, out}
	})
}

// Merge stacks srcs as separate bands of dst, in order.
func (g *GDAL) Merge(ctx context.Context, dst string, srcs ...string) error {
	if len(srcs) == 0 {
		return fmt.Errorf("toolchain: merge: no inputs")
	}
	return g.produce(ctx, "merge", dst, func(out string) []string {
		args := []string{g.cmds.GDALMerge, "-separate", "-of", "GTiff", "-o", out}
		return append(args, srcs...)
	})
}

// Resize resamples src to exactly width x height pixels.
func (g *GDAL) Resize(ctx context.Context, src, dst string, width, height int) error {
	return g.produce(ctx, "resize", dst, func(out string) []string {
		return []string{g.cmds.GDALTranslate,
			"-of", "GTiff", "-outsize", strconv.Itoa(width), strconv.Itoa(height),
			src, out}
	})
}

// Median computes the per-pixel median of srcs, which must share dimensions.
func (g *GDAL) Median(ctx context.Context, dst string, srcs ...string) error {
	if len(srcs) == 0 {
		return fmt.Errorf("toolchain: median: no inputs")
	}
	return g.produce(ctx, "median", dst, func(out string) []string {
		args := []string{g.cmds.GDALCalc,
			"--format", "GTiff", "--type", "Byte",
			"--calc", "numpy.median(A,axis=0)",
			"--allBands", "A",
			"--outfile", out, "-A"}
		return append(args, srcs...)
	})
}

// Dimensions returns the pixel width and height of a raster.
func (g *GDAL) Dimensions(ctx context.Context, path string) (int, int, error) {
	out, err := g.runner.Run(ctx, "dimensions", g.cmds.GDALInfo, "-json", path)
	if err != nil {
		return 0, 0, err
	}
	var info struct {
		Size []int `json:"size"`
	}
	if err := json.Unmarshal(out, &info); err != nil {
		return 0, 0, fmt.Errorf("toolchain: decode gdalinfo for %s: %w", filepath.Base(path), err)
	}
	if len(info.Size) != 2 || info.Size[0] <= 0 || info.Size[1] <= 0 {
		return 0, 0, fmt.Errorf("toolchain: gdalinfo for %s reported size %v", filepath.Base(path), info.Size)
	}
	return info.Size[0], info.Size[1], nil
}

// produce runs the command built for the partial output of dst, then commits it.
func (g *GDAL) produce(ctx context.Context, op, dst string, build func(out string) []string) error {
	argv := build(workspace.PartialPath(dst))
	if _, err := g.runner.Run(ctx, op, argv[0], argv[1:]...); err != nil {
		workspace.Discard(dst)
		return err
	}
	return workspace.Commit(dst)
}
