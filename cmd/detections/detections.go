// Package detections imports stored detection service results as annotations.
package detections

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tphakala/transformer-inspect/internal/annotation"
	"github.com/tphakala/transformer-inspect/internal/app"
	"github.com/tphakala/transformer-inspect/internal/conf"
	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/detector"
)

// Command creates the import-detections command.
func Command(settings *conf.Settings) *cobra.Command {
	var userID string
	var minConfidence float64

	cmd := &cobra.Command{
		Use:   "import-detections <image-id> <result.json>",
		Short: "Create AUTO_DETECTED annotations from a saved detection result",
		Long: "Read a JSON response of the thermal anomaly detection service and store its " +
			"detections as annotations of an image. Pass - to read from standard input.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			imageID, err := strconv.ParseUint(args[0], 10, 0)
			if err != nil || imageID == 0 {
				return fmt.Errorf("invalid image id %q", args[0])
			}

			var in io.Reader = cmd.InOrStdin()
			if args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			a, err := app.Open(settings)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			res, err := Import(cmd.Context(), a.Annotations, uint(imageID), in, userID, minConfidence)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Image %d: %d detections, %d malformed, %d below %.2f, %d annotations created\n",
				imageID, res.Detections, res.Malformed, res.BelowThreshold, minConfidence, res.Created)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id recorded on the created annotations")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Skip detections below this confidence")

	return cmd
}

// Result counts what happened to the detections of one import.
type Result struct {
	Detections     int
	Malformed      int
	BelowThreshold int
	Created        int
}

// BatchCreator is the part of annotation.Manager used by Import.
type BatchCreator interface {
	CreateBatch(ctx context.Context, imageID uint, inputs []annotation.Input) ([]entities.Annotation, error)
}

// Import parses a detection result from r and creates annotations on imageID.
func Import(ctx context.Context, creator BatchCreator, imageID uint, r io.Reader, userID string, minConfidence float64) (Result, error) {
	parsed, err := detector.ParseResult(r)
	if err != nil {
		return Result{}, err
	}
	candidates, malformed := parsed.Candidates()
	out := Result{Detections: len(parsed.Detections), Malformed: malformed}

	inputs := make([]annotation.Input, 0, len(candidates))
	for _, c := range candidates {
		if c.Confidence < minConfidence {
			out.BelowThreshold++
			continue
		}
		inputs = append(inputs, c.Input(imageID, userID))
	}

	created, err := creator.CreateBatch(ctx, imageID, inputs)
	if err != nil {
		return out, err
	}
	out.Created = len(created)
	return out, nil
}
