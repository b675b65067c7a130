package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/engine"
	"github.com/rushteam/shoprec/model"
)

// productView 是输出中的商品行。
type productView struct {
	ProductID     int64   `json:"product_id"`
	Name          string  `json:"name,omitempty"`
	CategoryName  string  `json:"category_name,omitempty"`
	Price         float64 `json:"price"`
	AvgRating     float64 `json:"avg_rating"`
	PurchaseCount int     `json:"purchase_count"`
}

func productViews(snap *model.Snapshot, ids []int64) []productView {
	out := make([]productView, 0, len(ids))
	for _, id := range ids {
		v := productView{ProductID: id}
		if snap != nil {
			if p, ok := snap.Catalog[id]; ok {
				v.Name = p.Name
				v.CategoryName = p.CategoryName
				v.Price = p.Price
				v.AvgRating = p.AvgRating
				v.PurchaseCount = p.PurchaseCount
			}
		}
		out = append(out, v)
	}
	return out
}

func newTrainCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Retrain both models from the data feed and persist them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.engine.Train(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newRecommendCommand(a *app) *cobra.Command {
	var (
		userID int64
		n      int
		method string
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend products for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			method = engine.NormalizeMethod(method)
			ids, err := rt.engine.Recommend(cmd.Context(), userID, n, method)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"user_id":         userID,
				"method":          method,
				"recommendations": productViews(rt.engine.Snapshot(), ids),
			})
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "customer id")
	cmd.Flags().IntVarP(&n, "num", "n", 10, "number of recommendations")
	cmd.Flags().StringVarP(&method, "method", "m", engine.MethodHybrid, "collaborative | content | hybrid")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSimilarCommand(a *app) *cobra.Command {
	var (
		productID int64
		n         int
	)
	cmd := &cobra.Command{
		Use:   "similar",
		Short: "List products similar to a product",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			ids, err := rt.engine.SimilarProducts(cmd.Context(), productID, n)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"product_id":       productID,
				"similar_products": productViews(rt.engine.Snapshot(), ids),
			})
		},
	}
	cmd.Flags().Int64VarP(&productID, "product", "p", 0, "product id")
	cmd.Flags().IntVarP(&n, "num", "n", 5, "number of similar products")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the saved models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.engine.LoadSaved(cmd.Context()); err != nil && !core.IsStoreNotFound(err) {
				return err
			}
			st := rt.engine.Status()
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"status":       st,
				"age_days":     st.Age.Hours() / 24,
				"generated_at": time.Now().UTC(),
			})
		},
	}
}

func newResetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the saved models from the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.engine.Reset(cmd.Context()); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"reset": true,
				"key":   a.cfg.Engine.StateKey,
			})
		},
	}
}

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
