// Package main provides the showtell image captioning CLI.
package main

import (
	"bufio"
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"

	"github.com/showtell/showtell/internal/backend/cpu"
	"github.com/showtell/showtell/internal/generate"
	"github.com/showtell/showtell/internal/imageutil"
	"github.com/showtell/showtell/internal/model"
	"github.com/showtell/showtell/internal/nn"
	"github.com/showtell/showtell/internal/tokenizer"
)

const version = "v0.1.0-dev"

type captionOptions struct {
	checkpoint string
	tokenizer  string
	vocabPath  string
	embedSize  int
	hiddenSize int
	numLayers  int
	imageSize  int
	maxLen     int
	workers    int
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "showtell",
		Short:         "Generate image captions with a CNN encoder and LSTM decoder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newCaptionCmd(), newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newCaptionCmd() *cobra.Command {
	opts := captionOptions{}

	cmd := &cobra.Command{
		Use:   "caption IMAGE...",
		Short: "Caption one or more image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCaption(opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.checkpoint, "checkpoint", "c", "", "model checkpoint file")
	cmd.Flags().StringVar(&opts.tokenizer, "tokenizer", "vocab", `tokenizer: "vocab" or a tiktoken encoding name such as "cl100k_base"`)
	cmd.Flags().StringVar(&opts.vocabPath, "vocab", "", "caption vocabulary file, one word per line (vocab tokenizer only)")
	cmd.Flags().IntVar(&opts.embedSize, "embed-size", 256, "embedding dimensionality")
	cmd.Flags().IntVar(&opts.hiddenSize, "hidden-size", 512, "LSTM hidden size")
	cmd.Flags().IntVar(&opts.numLayers, "num-layers", 1, "LSTM stack depth")
	cmd.Flags().IntVar(&opts.imageSize, "image-size", 224, "input image side length")
	cmd.Flags().IntVar(&opts.maxLen, "max-len", model.DefaultMaxLen, "caption length cap in tokens")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "concurrent captioning goroutines (0 means one per image)")

	if err := cmd.MarkFlagRequired("checkpoint"); err != nil {
		panic(err)
	}

	return cmd
}

// loadTokenizer resolves the --tokenizer flag. The built-in "vocab"
// tokenizer reads the word list named by --vocab; any other value is
// treated as a tiktoken encoding name.
func loadTokenizer(opts captionOptions) (tokenizer.Tokenizer, error) {
	if opts.tokenizer == "vocab" {
		if opts.vocabPath == "" {
			return nil, fmt.Errorf("--vocab is required with the vocab tokenizer")
		}
		vocab, err := loadVocabFile(opts.vocabPath)
		if err != nil {
			return nil, fmt.Errorf("load vocabulary: %w", err)
		}
		return vocab, nil
	}
	tok, err := tokenizer.NewCaptionTikToken(opts.tokenizer)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %q: %w", opts.tokenizer, err)
	}
	return tok, nil
}

func runCaption(opts captionOptions, paths []string) error {
	tok, err := loadTokenizer(opts)
	if err != nil {
		return err
	}

	backend := cpu.New()

	backbone := model.NewBackbone(model.BackboneConfig{
		InChannels: 3,
		ImageSize:  opts.imageSize,
		NumClasses: 1000,
	}, backend)
	encoder := model.NewEncoder(backbone, opts.embedSize, backend)
	decoder := model.NewDecoder(opts.embedSize, opts.hiddenSize, tok.VocabSize(), opts.numLayers, backend)
	captioner := model.NewCaptioner(encoder, decoder)

	if _, err := nn.LoadCheckpoint(opts.checkpoint, backend, captioner, nil); err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	preprocess := imageutil.DefaultConfig()
	preprocess.Width = opts.imageSize
	preprocess.Height = opts.imageSize

	generator := generate.New(encoder, decoder, tok, generate.Config{
		MaxLen:     opts.maxLen,
		Preprocess: preprocess,
		Workers:    opts.workers,
	}, backend)

	images := make([]image.Image, len(paths))
	for i, path := range paths {
		img, err := imageutil.Load(path)
		if err != nil {
			return err
		}
		images[i] = img
	}

	captions, err := generator.GenerateBatch(images)
	if err != nil {
		return err
	}

	for i, caption := range captions {
		fmt.Printf("%s: %s\n", paths[i], caption)
	}
	return nil
}

// loadVocabFile reads a newline-separated word list. Blank lines are
// skipped; reserved tokens are added automatically.
func loadVocabFile(path string) (*tokenizer.Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if word := scanner.Text(); word != "" {
			words = append(words, word)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return tokenizer.NewVocab(words), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("showtell", version)
		},
	}
}
