package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/JoahanSP/SECURENET/internal/config"
	"github.com/JoahanSP/SECURENET/internal/database/postgres"
	"github.com/JoahanSP/SECURENET/internal/faces"
	"github.com/JoahanSP/SECURENET/internal/storage"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Manage the authorized-faces gallery",
}

var facesEnrollCmd = &cobra.Command{
	Use:   "enroll <name> <image>...",
	Short: "Add reference photos of an authorized person",
	Long: `Copy each image into the authorized directory and register the most
confident face in it under name. Several photos of the same person improve
matching.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runFacesEnroll,
}

var facesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List gallery entries",
	Args:  cobra.NoArgs,
	RunE:  runFacesList,
}

var facesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove every gallery entry for a name",
	Args:  cobra.ExactArgs(1),
	RunE:  runFacesDelete,
}

func init() {
	rootCmd.AddCommand(facesCmd)
	facesCmd.AddCommand(facesEnrollCmd, facesListCmd, facesDeleteCmd)
}

func newRegistry(cfg *config.Config, pool *postgres.Pool) *faces.Registry {
	return faces.NewRegistry(faces.NewClient(cfg.Faces.ServiceURL), postgres.NewFaceRepository(pool), faces.MatcherOptions{
		DistanceThreshold: cfg.Faces.DistanceThreshold,
		MinDetScore:       cfg.Faces.MinDetScore,
		MaxImageSize:      cfg.Faces.MaxImageSize,
	}, logger)
}

func runFacesEnroll(cmd *cobra.Command, args []string) error {
	name, images := args[0], args[1:]
	ctx := cmd.Context()

	cfg := config.Load()
	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	registry := newRegistry(cfg, pool)
	router := storage.NewRouter(cfg.Storage.PendingDir, cfg.Storage.IntruderDir, cfg.Storage.AuthorizedDir, cfg.Storage.MaxFiles, logger)

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Enrolling "+name),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionFullWidth(),
	)

	var added int
	var failures []string
	for _, img := range images {
		if err := enrollOne(cmd, registry, router, name, img); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", img, err))
		} else {
			added++
		}
		bar.Add(1)
	}
	fmt.Println()

	for _, f := range failures {
		fmt.Println(f)
	}
	fmt.Printf("Added %d of %d photos for %s\n", added, len(images), name)
	if added == 0 {
		return fmt.Errorf("no photo of %s could be enrolled", name)
	}
	return nil
}

func enrollOne(cmd *cobra.Command, registry *faces.Registry, router *storage.Router, name, img string) error {
	data, err := os.ReadFile(img) //nolint:gosec // path supplied by the operator
	if err != nil {
		return err
	}
	path, err := router.Store(data, filepath.Base(img), storage.Authorized)
	if err != nil {
		return err
	}
	if _, err := registry.Register(cmd.Context(), name, path); err != nil {
		router.Remove(path)
		return err
	}
	return nil
}

func runFacesList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	pool, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	list, err := newRegistry(cfg, pool).List(cmd.Context())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("Gallery is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSCORE\tADDED\tIMAGE")
	for _, f := range list {
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%s\t%s\n", f.ID, f.Name, f.DetScore, f.CreatedAt.Format("2006-01-02 15:04"), filepath.Base(f.ImagePath))
	}
	return w.Flush()
}

func runFacesDelete(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	pool, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	n, err := newRegistry(cfg, pool).Delete(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d entries for %s\n", n, args[0])
	return nil
}
