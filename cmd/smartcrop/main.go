package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/imageturbo/smartcrop"
	"github.com/imageturbo/smartcrop/internal/config"
	"github.com/imageturbo/smartcrop/internal/utils"
	"github.com/imageturbo/smartcrop/pkg/codec"
)

func main() {
	var in, outDir, mode, aspectFlag, boostFlag, ext, configPath string
	var width, height, quality, outW, outH int
	var lossless, jsonOut, metaOnly, verbose bool

	flag.StringVar(&in, "in", "", "input image file or directory (jpg/png/webp)")
	flag.StringVar(&outDir, "out", "out", "output directory for crops")
	flag.StringVar(&mode, "mode", "crop", "operation: analyze or crop")

	flag.StringVar(&aspectFlag, "aspect", "", "target aspect ratio, e.g. 1:1 or 16:9")
	flag.IntVar(&width, "width", 0, "explicit crop width in pixels")
	flag.IntVar(&height, "height", 0, "explicit crop height in pixels")
	flag.StringVar(&boostFlag, "boost", "", "boost regions: x,y,w,h,weight joined with ';'")

	flag.StringVar(&ext, "ext", "", "output format: png|jpg|webp (default from config)")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality 1-100 (default from config)")
	flag.BoolVar(&lossless, "lossless", false, "WebP lossless mode")
	flag.IntVar(&outW, "outw", 0, "scale the crop to this output width (with -outh)")
	flag.IntVar(&outH, "outh", 0, "scale the crop to this output height (with -outw)")

	flag.StringVar(&configPath, "config", "", "tuning config file (JSON)")
	flag.BoolVar(&jsonOut, "json", false, "print analysis results as JSON")
	flag.BoolVar(&metaOnly, "meta", false, "print image metadata and exit")
	flag.BoolVar(&verbose, "v", false, "verbose engine logging")
	flag.Parse()

	if in == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if ext == "" {
		ext = cfg.Output.Format
	}
	if quality == 0 {
		quality = cfg.Output.Quality
	}

	engineCfg := cfg.EngineConfig()
	if verbose {
		engineCfg.Log = log.New(os.Stderr, "smartcrop: ", 0)
	}
	engine := smartcrop.NewWithConfig(engineCfg)

	boosts, err := parseBoosts(boostFlag)
	if err != nil {
		log.Fatalf("boost: %v", err)
	}
	opts := smartcrop.Options{
		Width:       width,
		Height:      height,
		AspectRatio: aspectFlag,
		Boost:       boosts,
	}

	inputs, err := collectInputs(in)
	if err != nil {
		log.Fatalf("input: %v", err)
	}

	if mode == "crop" {
		if err := utils.EnsureDir(outDir); err != nil {
			log.Fatalf("output dir: %v", err)
		}
	}

	for _, path := range inputs {
		if err := processFile(engine, opts, path, outDir, mode, ext, quality, lossless, outW, outH, cfg.Output.Suffix, jsonOut, metaOnly); err != nil {
			log.Fatalf("%s: %v", path, err)
		}
	}
}

func collectInputs(in string) ([]string, error) {
	if utils.DirExists(in) {
		files, err := utils.ListImageFiles(in)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no image files in %s", in)
		}
		return files, nil
	}
	if !utils.FileExists(in) {
		return nil, fmt.Errorf("no such file: %s", in)
	}
	return []string{in}, nil
}

func processFile(engine *smartcrop.Engine, opts smartcrop.Options, path, outDir, mode, ext string, quality int, lossless bool, outW, outH int, suffix string, jsonOut, metaOnly bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if metaOnly {
		meta, err := smartcrop.Metadata(data)
		if err != nil {
			return err
		}
		return printResult(path, meta, jsonOut)
	}

	if mode == "analyze" {
		win, err := engine.AnalyzeBytes(data, opts)
		if err != nil {
			return err
		}
		return printResult(path, win, jsonOut)
	}

	img, err := codec.Decode(data)
	if err != nil {
		return err
	}
	win, sub, err := engine.Crop(img, opts)
	if err != nil {
		return err
	}

	var out image.Image = sub.ToImage()
	if outW > 0 && outH > 0 {
		out = codec.FillTo(out, outW, outH)
	}

	outPath := utils.GenerateOutputFilename(path, outDir, suffix, ext)
	if err := codec.Save(out, outPath, ext, quality, lossless); err != nil {
		return err
	}
	fmt.Printf("%s -> %s (window %dx%d at %d,%d score=%.3f)\n",
		path, outPath, win.Width, win.Height, win.X, win.Y, win.Score)
	return nil
}

func printResult(path string, v interface{}, jsonOut bool) error {
	if jsonOut {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("%s: %+v\n", path, v)
	return nil
}

// parseBoosts parses "x,y,w,h,weight" groups joined with ';'.
func parseBoosts(s string) ([]smartcrop.BoostRegion, error) {
	if s == "" {
		return nil, nil
	}
	var regions []smartcrop.BoostRegion
	for _, group := range strings.Split(s, ";") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		fields := strings.Split(group, ",")
		if len(fields) != 5 {
			return nil, fmt.Errorf("boost region %q must have 5 fields: x,y,w,h,weight", group)
		}
		var nums [4]int
		for i := 0; i < 4; i++ {
			n, err := strconv.Atoi(strings.TrimSpace(fields[i]))
			if err != nil {
				return nil, fmt.Errorf("boost region %q: %v", group, err)
			}
			nums[i] = n
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
		if err != nil {
			return nil, fmt.Errorf("boost region %q: %v", group, err)
		}
		regions = append(regions, smartcrop.BoostRegion{
			X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3], Weight: weight,
		})
	}
	return regions, nil
}
