package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gainmap-rs/ultrahdr-go"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "resize":
		if err := runResize(os.Args[2:]); err != nil {
			fail(err)
		}
	case "rebase":
		if err := runRebase(os.Args[2:]); err != nil {
			fail(err)
		}
	case "detect":
		if err := runDetect(os.Args[2:]); err != nil {
			fail(err)
		}
	case "split":
		if err := runSplit(os.Args[2:]); err != nil {
			fail(err)
		}
	case "join":
		if err := runJoin(os.Args[2:]); err != nil {
			fail(err)
		}
	case "apply":
		if err := runApply(os.Args[2:]); err != nil {
			fail(err)
		}
	case "compute":
		if err := runCompute(os.Args[2:]); err != nil {
			fail(err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: uhdrtool <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  resize -in input.jpg -out output.jpg -w 2400 -h 1600 [-q 85] [-gq 75] [-primary-out p.jpg] [-gainmap-out g.jpg]")
	fmt.Fprintln(os.Stderr, "  rebase -in uhdr.jpg -primary better_sdr.jpg -out output.jpg [-q 95] [-gq 85] [-primary-out p.jpg] [-gainmap-out g.jpg]")
	fmt.Fprintln(os.Stderr, "  detect -in input.jpg")
	fmt.Fprintln(os.Stderr, "  split  -in input.jpg -primary-out primary.jpg -gainmap-out gainmap.jpg [-meta-out meta.json]")
	fmt.Fprintln(os.Stderr, "  join   -meta meta.json -primary primary.jpg -gainmap gainmap.jpg -out output.jpg")
	fmt.Fprintln(os.Stderr, "        (or) join -template input.jpg -primary primary.jpg -gainmap gainmap.jpg -out output.jpg")
	fmt.Fprintln(os.Stderr, "  apply   -base base.png -gainmap gainmap.png -meta meta.json -headroom 4.0 -out out.png")
	fmt.Fprintln(os.Stderr, "  compute -base base.png -alt alt.png -w 0 -h 0 -gamma 1 -single -meta-out meta.json -gainmap-out gainmap.png")
}

func runResize(args []string) error {
	fs := flag.NewFlagSet("resize", flag.ContinueOnError)
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	width := fs.Int("w", 0, "target width")
	height := fs.Int("h", 0, "target height")
	q := fs.Int("q", 85, "base quality")
	gq := fs.Int("gq", 75, "gainmap quality")
	primaryOut := fs.String("primary-out", "", "write primary JPEG")
	gainmapOut := fs.String("gainmap-out", "", "write gainmap JPEG")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *outPath == "" || *width <= 0 || *height <= 0 {
		return errors.New("missing required arguments")
	}
	return ultrahdr.ResizeUltraHDRFile(*inPath, *outPath, uint(*width), uint(*height), func(opt *ultrahdr.ResizeOptions) {
		opt.PrimaryQuality = *q
		opt.GainmapQuality = *gq
		opt.PrimaryOut = *primaryOut
		opt.GainmapOut = *gainmapOut
	})
}

func runRebase(args []string) error {
	fs := flag.NewFlagSet("rebase", flag.ContinueOnError)
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	primaryPath := fs.String("primary", "", "new SDR JPEG")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	q := fs.Int("q", 95, "base quality")
	gq := fs.Int("gq", 85, "gainmap quality")
	primaryOut := fs.String("primary-out", "", "write primary JPEG")
	gainmapOut := fs.String("gainmap-out", "", "write gainmap JPEG")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *primaryPath == "" || *outPath == "" {
		return errors.New("missing required arguments")
	}
	opts := &ultrahdr.RebaseOptions{
		BaseQuality:    *q,
		GainmapQuality: *gq,
	}
	return ultrahdr.RebaseUltraHDRFile(*inPath, *primaryPath, *outPath, opts, *primaryOut, *gainmapOut)
}

func runDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	inPath := fs.String("in", "", "input JPEG")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		return errors.New("missing required arguments")
	}
	f, err := os.Open(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	defer f.Close()
	ok, err := ultrahdr.IsUltraHDR(f)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(os.Stdout, "ultrahdr")
		return nil
	}
	fmt.Fprintln(os.Stdout, "not ultrahdr")
	return nil
}

func runSplit(args []string) error {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	primaryOut := fs.String("primary-out", "", "primary output JPEG")
	gainmapOut := fs.String("gainmap-out", "", "gainmap output JPEG")
	metaOut := fs.String("meta-out", "", "metadata json output")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *primaryOut == "" || *gainmapOut == "" {
		return fmt.Errorf("missing required arguments")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	primaryJPEG, gainmapJPEG, _, segs, err := ultrahdr.SplitWithSegments(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(*primaryOut), primaryJPEG, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(*gainmapOut), gainmapJPEG, 0o644); err != nil {
		return err
	}
	if *metaOut != "" {
		bundle, err := ultrahdr.BuildMetadataBundle(primaryJPEG, segs)
		if err != nil {
			return err
		}
		payload, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Clean(*metaOut), payload, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func runJoin(args []string) error {
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	templatePath := fs.String("template", "", "template UltraHDR JPEG for metadata")
	metaPath := fs.String("meta", "", "metadata json")
	primaryPath := fs.String("primary", "", "primary JPEG")
	gainmapPath := fs.String("gainmap", "", "gainmap JPEG")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *primaryPath == "" || *gainmapPath == "" || *outPath == "" {
		return fmt.Errorf("missing required arguments")
	}
	primary, err := os.ReadFile(filepath.Clean(*primaryPath))
	if err != nil {
		return err
	}
	gainmap, err := os.ReadFile(filepath.Clean(*gainmapPath))
	if err != nil {
		return err
	}
	if *metaPath != "" {
		metaData, err := os.ReadFile(filepath.Clean(*metaPath))
		if err != nil {
			return err
		}
		var bundle ultrahdr.MetadataBundle
		if err := json.Unmarshal(metaData, &bundle); err != nil {
			return err
		}
		container, err := ultrahdr.AssembleFromBundle(primary, gainmap, &bundle)
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Clean(*outPath), container, 0o644)
	}
	if *templatePath == "" {
		return fmt.Errorf("missing -meta or -template")
	}
	template, err := os.ReadFile(filepath.Clean(*templatePath))
	if err != nil {
		return err
	}
	_, _, _, segs, err := ultrahdr.SplitWithSegments(template)
	if err != nil {
		return err
	}
	exif, icc, err := ultrahdr.ExtractEXIFAndICC(primary)
	if err != nil {
		return err
	}
	if len(exif) == 0 && len(icc) == 0 {
		exif, icc, err = ultrahdr.ExtractEXIFAndICC(template)
		if err != nil {
			return err
		}
	}
	container, err := ultrahdr.AssembleContainer(primary, gainmap, exif, icc, segs.SecondaryXMP, segs.SecondaryISO)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(*outPath), container, 0o644)
}

func runApply(args []string) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	basePath := fs.String("base", "", "base (SDR) PNG/JPEG")
	gainmapPath := fs.String("gainmap", "", "gain map PNG/JPEG")
	metaPath := fs.String("meta", "", "metadata json (ultrahdr.GainMapMetadata)")
	headroom := fs.Float64("headroom", 0, "display HDR headroom (>=1; 0 uses the metadata's alternate headroom)")
	outPath := fs.String("out", "", "output PNG")
	wantCLLI := fs.Bool("clli", false, "report CLLI statistics on stderr")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *basePath == "" || *gainmapPath == "" || *metaPath == "" || *outPath == "" {
		return errors.New("missing required arguments")
	}

	baseImg, err := decodeImageFile(*basePath)
	if err != nil {
		return fmt.Errorf("decode base: %w", err)
	}
	gainmapImg, err := decodeImageFile(*gainmapPath)
	if err != nil {
		return fmt.Errorf("decode gainmap: %w", err)
	}
	meta, err := readMetadataJSON(*metaPath)
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}

	hr := *headroom
	if hr <= 0 {
		hr = meta.AlternateHdrHeadroom.ToFloat()
	}
	gm := &ultrahdr.GainMap{Metadata: *meta, Image: gainmapImg}

	var diag ultrahdr.Diagnostics
	out, clli, err := ultrahdr.ApplyImage(baseImg, ultrahdr.GamutBT709, ultrahdr.TransferSRGB, nil, gm, hr, meta.AlternateColorPrimaries, meta.AlternateTransferCharacteristics, *wantCLLI, &diag)
	if err != nil {
		return err
	}
	if *wantCLLI && clli != nil {
		fmt.Fprintf(os.Stderr, "CLLI: maxCLL=%d maxPALL=%d\n", clli.MaxCLL, clli.MaxPALL)
	}
	return writePNG(*outPath, out)
}

func runCompute(args []string) error {
	fs := flag.NewFlagSet("compute", flag.ContinueOnError)
	basePath := fs.String("base", "", "base (SDR) PNG/JPEG")
	altPath := fs.String("alt", "", "alternate (HDR) PNG/JPEG or OpenEXR")
	width := fs.Int("w", 0, "gain map width (0 uses the base image's width)")
	height := fs.Int("h", 0, "gain map height (0 uses the base image's height)")
	gamma := fs.Float64("gamma", 1.0, "gain map gamma")
	single := fs.Bool("single", true, "encode a single-channel (luma) gain map")
	altHeadroom := fs.Float64("alt-headroom", 0, "alternate rendition's HDR headroom (0 derives it from -alt-nits/SDR white)")
	altNits := fs.Float64("alt-nits", 1000, "alternate rendition's reference white, in nits; used when -alt-headroom is 0")
	gainmapOut := fs.String("gainmap-out", "", "output gain map PNG")
	metaOut := fs.String("meta-out", "", "output metadata json")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *basePath == "" || *altPath == "" || *gainmapOut == "" || *metaOut == "" {
		return errors.New("missing required arguments")
	}

	baseImg, err := decodeImageFile(*basePath)
	if err != nil {
		return fmt.Errorf("decode base: %w", err)
	}

	b := baseImg.Bounds()
	w, h := *width, *height
	if w <= 0 {
		w = b.Dx()
	}
	if h <= 0 {
		h = b.Dy()
	}

	var alt any
	altPrim := ultrahdr.GamutBT2100
	altTF := ultrahdr.TransferLinear
	if strings.EqualFold(filepath.Ext(*altPath), ".exr") {
		data, err := os.ReadFile(filepath.Clean(*altPath))
		if err != nil {
			return err
		}
		hdr, err := ultrahdr.DecodeEXR(data)
		if err != nil {
			return fmt.Errorf("decode EXR: %w", err)
		}
		alt = hdr
	} else {
		altImg, err := decodeImageFile(*altPath)
		if err != nil {
			return fmt.Errorf("decode alt: %w", err)
		}
		alt = altImg
		altPrim = ultrahdr.GamutBT709
		altTF = ultrahdr.TransferSRGB
	}

	gm := &ultrahdr.GainMap{
		RequestedWidth:  w,
		RequestedHeight: h,
		SingleChannel:   *single,
		Gamma:           float32(*gamma),
	}
	const sdrWhiteNits = 203.0
	hr := *altHeadroom
	if hr <= 0 {
		hr = *altNits / sdrWhiteNits
	}
	computeOpt := &ultrahdr.ComputeOptions{ManualBaseHdrHeadroom: 0, ManualAlternateHdrHeadroom: hr}
	var diag ultrahdr.Diagnostics
	if err := ultrahdr.ComputeImage(baseImg, ultrahdr.GamutBT709, ultrahdr.TransferSRGB, alt, altPrim, altTF, nil, gm, computeOpt, &diag); err != nil {
		return err
	}

	gainmapImg, ok := gm.Image.(image.Image)
	if !ok {
		return errors.New("computed gain map has no image representation")
	}
	if err := writePNG(*gainmapOut, gainmapImg); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(&gm.Metadata, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(*metaOut), payload, 0o644)
}

func decodeImageFile(path string) (image.Image, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func readMetadataJSON(path string) (*ultrahdr.GainMapMetadata, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var meta ultrahdr.GainMapMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func writePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(path), buf.Bytes(), 0o644)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
