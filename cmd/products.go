package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/catalog-admin/internal/export"
	"github.com/lehigh-university-libraries/catalog-admin/internal/images"
	"github.com/lehigh-university-libraries/catalog-admin/internal/models"
)

func newProductsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"product"},
		Short:   "Browse and edit products",
	}

	cmd.AddCommand(newProductsListCmd(a))
	cmd.AddCommand(newProductsGetCmd(a))
	cmd.AddCommand(newProductsCategoriesCmd(a))
	cmd.AddCommand(newProductsCreateCmd(a))
	cmd.AddCommand(newProductsUpdateCmd(a))
	cmd.AddCommand(newProductsDeleteCmd(a))
	cmd.AddCommand(newProductsExportCmd(a))
	cmd.AddCommand(newProductsImageCmd(a))

	return cmd
}

func newProductsListCmd(a *app) *cobra.Command {
	var filter models.ProductFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products, optionally filtered",
		Example: `  catalog-admin products list
  catalog-admin products list --category Lighting --search lamp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := a.client.Products.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), products, productTable(products))
		},
	}

	cmd.Flags().StringVar(&filter.Category, "category", "", "Only products in this category")
	cmd.Flags().StringVar(&filter.Search, "search", "", "Only products whose name contains this text")

	return cmd
}

func newProductsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.client.Products.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), p, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "ID:\t%d\n", p.ID)
				fmt.Fprintf(tw, "Name:\t%s\n", p.Name)
				fmt.Fprintf(tw, "Description:\t%s\n", p.Description)
				fmt.Fprintf(tw, "Category:\t%s\n", p.Category)
				fmt.Fprintf(tw, "Brand:\t%s\n", p.Brand)
				fmt.Fprintf(tw, "Price:\t%s\n", p.Price.StringFixed(2))
				fmt.Fprintf(tw, "Stock:\t%d\n", p.Stock)
				fmt.Fprintf(tw, "Rating:\t%s\n", formatOptionalFloat(p.Rating))
				if p.ImagePath != nil {
					fmt.Fprintf(tw, "Image:\t%s\n", images.Resolve(a.cfg.AssetURL, *p.ImagePath))
				}
				if p.CreatedAt != nil {
					fmt.Fprintf(tw, "Created:\t%s\n", p.CreatedAt.Format("2006-01-02 15:04"))
				}
			})
		},
	}
}

func newProductsCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the distinct product categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			categories, err := a.client.Products.Categories(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), categories, func(tw *tabwriter.Writer) {
				for _, c := range categories {
					fmt.Fprintln(tw, c)
				}
			})
		},
	}
}

// productFlags holds the editable product fields. Only flags the user set
// make it into a patch.
type productFlags struct {
	name        string
	description string
	price       string
	category    string
	brand       string
	stock       int
	rating      float64
	image       string
}

func (f *productFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Product name")
	cmd.Flags().StringVar(&f.description, "description", "", "Product description")
	cmd.Flags().StringVar(&f.price, "price", "", "Price, e.g. 19.99")
	cmd.Flags().StringVar(&f.category, "category", "", "Category label")
	cmd.Flags().StringVar(&f.brand, "brand", "", "Brand")
	cmd.Flags().IntVar(&f.stock, "stock", 0, "Units in stock")
	cmd.Flags().Float64Var(&f.rating, "rating", 0, "Rating between 0 and 5")
	cmd.Flags().StringVar(&f.image, "image", "", "Path to an image file (max 5MB)")
}

func (f *productFlags) attachment(a *app) (*images.Attachment, error) {
	if f.image == "" {
		return nil, nil
	}
	return images.SelectFile(a.fs, f.image)
}

func (f *productFlags) patch(cmd *cobra.Command) (models.ProductPatch, error) {
	var patch models.ProductPatch
	changed := cmd.Flags().Changed

	if changed("name") {
		patch.Name = models.Ptr(f.name)
	}
	if changed("description") {
		patch.Description = models.Ptr(f.description)
	}
	if changed("price") {
		price, err := decimal.NewFromString(f.price)
		if err != nil {
			return models.ProductPatch{}, fmt.Errorf("invalid --price %q: %w", f.price, err)
		}
		patch.Price = &price
	}
	if changed("category") {
		patch.Category = models.Ptr(f.category)
	}
	if changed("brand") {
		patch.Brand = models.Ptr(f.brand)
	}
	if changed("stock") {
		patch.Stock = models.Ptr(f.stock)
	}
	if changed("rating") {
		patch.Rating = models.Ptr(f.rating)
	}
	return patch, nil
}

func newProductsCreateCmd(a *app) *cobra.Command {
	var f productFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a product",
		Example: `  catalog-admin products create --name "Desk Lamp" --description "LED lamp" \
    --price 29.99 --category Lighting --brand Lumo --stock 10 --image ./lamp.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := decimal.NewFromString(f.price)
			if err != nil {
				return fmt.Errorf("invalid --price %q: %w", f.price, err)
			}
			draft := models.ProductDraft{
				Name:        f.name,
				Description: f.description,
				Price:       price,
				Category:    f.category,
				Brand:       f.brand,
				Stock:       f.stock,
			}
			if cmd.Flags().Changed("rating") {
				draft.Rating = models.Ptr(f.rating)
			}

			img, err := f.attachment(a)
			if err != nil {
				return err
			}

			p, err := a.client.Products.Create(cmd.Context(), draft, img)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created product %d (%s)\n", p.ID, p.Name)
			return nil
		},
	}

	f.register(cmd)
	for _, name := range []string{"name", "description", "price", "category", "brand", "stock"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newProductsUpdateCmd(a *app) *cobra.Command {
	var f productFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change some fields of a product",
		Long: `Only the flags you pass are sent; every other field keeps its current
value on the server. Passing --stock 0 sets the stock to zero.`,
		Example: `  catalog-admin products update 3 --stock 0
  catalog-admin products update 3 --price 24.50 --image ./new.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			patch, err := f.patch(cmd)
			if err != nil {
				return err
			}
			img, err := f.attachment(a)
			if err != nil {
				return err
			}

			p, err := a.client.Products.Update(cmd.Context(), id, patch, img)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated product %d (%s)\n", p.ID, p.Name)
			return nil
		},
	}

	f.register(cmd)

	return cmd
}

func newProductsDeleteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := confirm(cmd, fmt.Sprintf("Delete product %d?", id))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			if err := a.client.Products.Remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted product %d\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

func newProductsExportCmd(a *app) *cobra.Command {
	var filter models.ProductFilter
	var format string
	var outputFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the product list to a YAML or Parquet file",
		Example: `  catalog-admin products export --file products.parquet
  catalog-admin products export --format yaml --category Lighting --file lighting.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFile == "" {
				return fmt.Errorf("--file is required")
			}
			var write func(w io.Writer, products []models.Product) error
			switch format {
			case "parquet":
				write = export.WriteParquet
			case formatYAML:
				write = func(w io.Writer, products []models.Product) error {
					return export.WriteYAML(w, a.cfg.APIURL, filter, products)
				}
			default:
				return fmt.Errorf("unsupported export format %q (use parquet or yaml)", format)
			}

			products, err := a.client.Products.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if err := a.fs.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			out, err := a.fs.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outputFile, err)
			}
			if err := write(out, products); err != nil {
				_ = out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputFile, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d products to %s\n", len(products), outputFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Category, "category", "", "Only products in this category")
	cmd.Flags().StringVar(&filter.Search, "search", "", "Only products whose name contains this text")
	cmd.Flags().StringVar(&format, "format", "parquet", "Export format: parquet or yaml")
	cmd.Flags().StringVarP(&outputFile, "file", "f", "", "Output file (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newProductsImageCmd(a *app) *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "image ID",
		Short: "Download a product's image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.client.Products.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if p.ImagePath == nil {
				return fmt.Errorf("product %d has no image", id)
			}

			path, err := a.client.Images.Download(cmd.Context(), *p.ImagePath, dest)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dest, "dest", ".", "File or directory to save the image to")

	return cmd
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
