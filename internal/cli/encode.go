package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
	"github.com/nypl/cancel-request-consumer/internal/infra/api"
	"github.com/nypl/cancel-request-consumer/internal/infra/schema"
	"github.com/nypl/cancel-request-consumer/internal/infra/stream"
)

var publishEncoded bool

var encodeCmd = &cobra.Command{
	Use:   "encode [record.json|-]",
	Short: "Encode a JSON cancel request record in the inbound wire format",
	Long:  `Encodes a JSON cancel request record with the inbound schema and prints it as base64. With --publish the encoded record is published to the inbound subject instead.`,
	Args:  cobra.ExactArgs(1),
	Run:   runEncode,
}

func init() {
	encodeCmd.Flags().BoolVar(&publishEncoded, "publish", false, "publish the encoded record to the inbound subject")
	rootCmd.AddCommand(encodeCmd)
}

func runEncode(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	data, err := readInput(args[0])
	if err != nil {
		slog.Error("Failed to read record", "error", err)
		os.Exit(1)
	}

	var rec domain.CancelRequestRecord
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &rec); err != nil {
		slog.Error("Failed to parse record", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	registry := schema.NewRegistry(api.NewClient(cfg.API.Timeout), cfg.Schema.RegistryURL)
	encoded, err := registry.EncodeRecord(ctx, rec)
	if err != nil {
		slog.Error("Failed to encode record", "error", err)
		os.Exit(1)
	}

	if !publishEncoded {
		fmt.Println(base64.StdEncoding.EncodeToString(encoded))
		return
	}

	nc, err := stream.Connect(cfg.Stream.NATSURL)
	if err != nil {
		slog.Error("Failed to connect to stream", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	if err := nc.Publish(ctx, cfg.Stream.InboundSubject, encoded); err != nil {
		slog.Error("Failed to publish record", "error", err)
		os.Exit(1)
	}
	slog.Info("Published record", "cancel_request_id", rec.ID, "subject", cfg.Stream.InboundSubject)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
