package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flowbaker/toolgroups/pkg/categorize"
	"github.com/flowbaker/toolgroups/pkg/categorize/filestore"
	"github.com/flowbaker/toolgroups/pkg/categorize/redisstore"
	"github.com/flowbaker/toolgroups/pkg/embeddings"
	"github.com/flowbaker/toolgroups/pkg/grouper"
	"github.com/flowbaker/toolgroups/pkg/provider"
	"github.com/flowbaker/toolgroups/pkg/provider/anthropic"
	"github.com/flowbaker/toolgroups/pkg/provider/openai"
	"github.com/flowbaker/toolgroups/pkg/types"
	"github.com/flowbaker/toolgroups/pkg/virtualtool"
)

func NewGroupCommand() *cobra.Command {
	var toolsPath string
	var query string

	cmd := &cobra.Command{
		Use:   "group",
		Short: "Run a grouping pass over a tool list file",
		Long: `Load a tool list from a JSON or YAML file, run one grouping pass with the
configured providers, and print the resulting tree with expansion state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return runGroup(cmd.Context(), toolsPath, query)
		},
	}

	cmd.Flags().StringVar(&toolsPath, "tools", "", "Path to a JSON or YAML tool list (required)")
	cmd.Flags().StringVar(&query, "query", "", "Query used to rank relevant tools")
	cmd.MarkFlagRequired("tools")

	return cmd
}

func runGroup(ctx context.Context, toolsPath, query string) error {
	config, err := LoadConfig()
	if err != nil {
		return err
	}

	tools, err := loadTools(toolsPath)
	if err != nil {
		return err
	}
	log.Info().Int("tool_count", len(tools)).Str("path", toolsPath).Msg("Loaded tools")

	g, local, err := buildGrouper(config)
	if err != nil {
		return err
	}
	if local != nil {
		// A one-shot run exits long before the debounce timer fires; Close
		// flushes computed embeddings to disk so the next run reuses them.
		defer func() {
			if err := local.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to flush embedding cache")
			}
		}()
	}

	root := &virtualtool.VirtualTool{Name: "root"}
	g.AddGroups(ctx, query, root, tools)

	printTree(os.Stdout, root.Contents, 0)
	return nil
}

// buildGrouper wires a grouper from config. The returned LocalCache, when
// non-nil, must be closed by the caller to flush pending embedding writes.
func buildGrouper(config *Config) (*grouper.Grouper, *embeddings.LocalCache, error) {
	var opts []grouper.Option

	chat, err := chatClient(config)
	if err != nil {
		return nil, nil, err
	}
	if chat != nil {
		opts = append(opts, grouper.WithCategorizer(categorize.NewCategorizer(chat)))
	} else {
		log.Warn().Msg("No chat provider configured; toolsets will not be categorized")
	}

	var local *embeddings.LocalCache
	if config.OpenAIAPIKey != "" {
		embeddingType := types.EmbeddingType(config.EmbeddingModel)
		local, err = embeddings.NewLocalCache(
			filepath.Join(config.CacheDir, "embeddings.bin"), embeddingType)
		if err != nil {
			return nil, nil, err
		}
		embedClient := openai.New(config.OpenAIAPIKey, config.EmbeddingModel)
		opts = append(opts, grouper.WithComputer(
			embeddings.NewComputer(embedClient, embeddingType, local)))
	}

	store, err := categoryStore(config)
	if err != nil {
		return nil, nil, err
	}
	cache, err := categorize.NewCache(0, store)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, grouper.WithCategoryCache(cache))

	g, err := grouper.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	return g, local, nil
}

func chatClient(config *Config) (provider.ChatClient, error) {
	switch config.ChatProvider {
	case "openai":
		if config.OpenAIAPIKey == "" {
			return nil, nil
		}
		return openai.New(config.OpenAIAPIKey, config.ChatModel), nil
	case "anthropic":
		if config.AnthropicAPIKey == "" {
			return nil, nil
		}
		return anthropic.New(config.AnthropicAPIKey, config.ChatModel), nil
	default:
		return nil, fmt.Errorf("unknown chat provider %q", config.ChatProvider)
	}
}

func categoryStore(config *Config) (categorize.Store, error) {
	if config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		return redisstore.New(client, ""), nil
	}
	return filestore.New(filepath.Join(config.CacheDir, "categories.bin")), nil
}

// toolFile is the on-disk tool list shape, shared by JSON and YAML.
type toolFile struct {
	Tools []types.Tool `json:"tools" yaml:"tools"`
}

func loadTools(path string) ([]types.Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tools file: %w", err)
	}

	var file toolFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse tools file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse tools file: %w", err)
		}
	}

	if len(file.Tools) == 0 {
		return nil, fmt.Errorf("no tools in %s", path)
	}
	return file.Tools, nil
}

func printTree(w *os.File, nodes []virtualtool.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		switch n := n.(type) {
		case virtualtool.ToolNode:
			fmt.Fprintf(w, "%s- %s\n", indent, n.Tool.Name)
		case *virtualtool.VirtualTool:
			state := "+"
			if n.IsExpanded {
				state = "-"
			}
			fmt.Fprintf(w, "%s[%s] %s (%d tools)\n", indent, state, n.Name, len(n.Contents))
			if n.IsExpanded {
				printTree(w, n.Contents, depth+1)
			}
		}
	}
}
