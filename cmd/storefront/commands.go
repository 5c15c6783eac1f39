package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"goflare.io/storefront/checkout"
	"goflare.io/storefront/models"
	"goflare.io/storefront/models/enum"
)

func newProductsCmd() *cobra.Command {
	var category, search string
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products, optionally filtered by category or search text",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			var (
				products []*models.Product
				err      error
			)
			switch {
			case search != "":
				products, err = a.service.SearchProducts(cmd.Context(), search)
			case category != "":
				products, err = a.service.ListProductsByCategory(cmd.Context(), category)
			default:
				products, err = a.service.ListProducts(cmd.Context())
			}
			if err != nil {
				return err
			}
			if len(products) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No products found.")
				return nil
			}
			return printProducts(cmd.OutOrStdout(), products)
		}),
	}
	cmd.Flags().StringVar(&category, "category", "", "only products in this category")
	cmd.Flags().StringVar(&search, "search", "", "match title, description or category")
	return cmd
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories with product counts",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			summaries, err := a.service.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No categories available.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tPRODUCTS\tIMAGE")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%d\t%s\n", s.DisplayName, s.ProductCount, s.Image)
			}
			return w.Flush()
		}),
	}
}

func newProductCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "product <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			p, err := a.service.GetProduct(cmd.Context(), models.ProductID(args[0]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", p.Title)
			fmt.Fprintf(out, "  id:       %s\n", p.ID)
			fmt.Fprintf(out, "  price:    $%s\n", models.FormatAmount(decimal.NewFromFloat(p.Price)))
			fmt.Fprintf(out, "  category: %s\n", p.Category)
			fmt.Fprintf(out, "  rating:   %.1f (%d)\n", p.Rating.Rate, p.Rating.Count)
			fmt.Fprintf(out, "  image:    %s\n\n%s\n", p.Image, p.Description)
			return nil
		}),
	}
}

func newCartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			return printCart(cmd.OutOrStdout(), a.service.CartItems(cmd.Context()))
		}),
	}

	var qty int
	add := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			res, err := a.service.AddToCart(cmd.Context(), models.ProductID(args[0]), qty)
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (now %d). Cart: %d items, $%s\n",
					res.Item.Title, res.Item.Quantity, res.Totals.TotalItemCount, res.Totals.SubtotalString())
			}
			return err
		}),
	}
	add.Flags().IntVar(&qty, "qty", 1, "quantity to add")

	set := &cobra.Command{
		Use:   "set <id> <qty>",
		Short: "Set the quantity of a cart item; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			n, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			totals, err := a.service.UpdateCartItemQuantity(cmd.Context(), models.ProductID(args[0]), n)
			printTotals(cmd.OutOrStdout(), totals)
			return err
		}),
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an item from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			totals, err := a.service.RemoveItemFromCart(cmd.Context(), models.ProductID(args[0]))
			printTotals(cmd.OutOrStdout(), totals)
			return err
		}),
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			err := a.service.ClearCart(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Cart cleared.")
			return err
		}),
	}

	cmd.AddCommand(add, set, remove, clearCmd)
	return cmd
}

func newCheckoutCmd() *cobra.Command {
	var (
		form     checkout.Form
		shipping string
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Validate the checkout form and place the order",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			form.Shipping = enum.ShippingMethod(shipping)
			receipt, err := a.service.Checkout(cmd.Context(), form)
			if receipt == nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Order placed. Reference %s\n", receipt.Reference)
			fmt.Fprintf(out, "  items:    %d\n", receipt.ItemCount)
			fmt.Fprintf(out, "  subtotal: $%s\n", models.FormatAmount(receipt.Subtotal))
			fmt.Fprintf(out, "  shipping: $%s (%s)\n", models.FormatAmount(receipt.ShippingCost), receipt.Shipping)
			fmt.Fprintf(out, "  total:    $%s\n", models.FormatAmount(receipt.Total))
			return err
		}),
	}
	f := cmd.Flags()
	f.StringVar(&form.FirstName, "first-name", "", "first name")
	f.StringVar(&form.LastName, "last-name", "", "last name")
	f.StringVar(&form.Address, "address", "", "street address")
	f.StringVar(&form.City, "city", "", "city")
	f.StringVar(&form.Zip, "zip", "", "ZIP code, up to 5 digits")
	f.StringVar(&form.CardNumber, "card", "", "card number, digits only")
	f.StringVar(&form.Expiry, "expiry", "", "card expiry as MM/YY")
	f.StringVar(&form.CVV, "cvv", "", "3 digit security code")
	f.StringVar(&shipping, "shipping", string(enum.ShippingMethodStandard), "standard, express or overnight")
	return cmd
}

func printProducts(out io.Writer, products []*models.Product) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPRICE\tCATEGORY")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t$%s\t%s\n", p.ID, p.Title, models.FormatAmount(decimal.NewFromFloat(p.Price)), p.Category)
	}
	return w.Flush()
}

func printCart(out io.Writer, items []models.LineItem) error {
	if len(items) == 0 {
		fmt.Fprintln(out, "Your cart is empty.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tQTY\tPRICE\tSUBTOTAL")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t$%s\t$%s\n", item.ProductID, item.Title, item.Quantity,
			models.FormatAmount(item.UnitPrice), models.FormatAmount(item.Subtotal()))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	printTotals(out, models.ComputeTotals(items))
	return nil
}

func printTotals(out io.Writer, totals models.Totals) {
	fmt.Fprintf(out, "Total: %d items, $%s\n", totals.TotalItemCount, totals.SubtotalString())
}
