package family

import (
	"github.com/YuminosukeSato/tabsearch/model_selection"
	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

const imputerStrategy = "preprocessor__num__imputer__strategy"

// DefaultSpace returns the built-in search space of a family. Each call
// returns a fresh map.
func DefaultSpace(name Name) (model_selection.ParamSpace, error) {
	var space model_selection.ParamSpace
	switch name {
	case XGB:
		space = model_selection.ParamSpace{
			"classifier__n_estimators": model_selection.NewCategorical(140, 150, 165, 170, 175, 180),
			"classifier__max_depth":    model_selection.NewCategorical(10, 15, 20),
		}
	case LR:
		space = model_selection.ParamSpace{
			"classifier__penalty": model_selection.NewCategorical("l2"),
			"classifier__C":       model_selection.NewCategorical(0.1, 0.5, 1.0, 1.5),
			"classifier__solver":  model_selection.NewCategorical("sag", "saga"),
		}
	case RF:
		space = model_selection.ParamSpace{
			"classifier__n_estimators": model_selection.NewCategorical(100, 150, 190, 200, 220, 250, 270),
			"classifier__max_depth":    model_selection.NewCategorical(8, 10, 15, 20),
		}
	case KNN:
		space = model_selection.ParamSpace{
			"classifier__n_neighbors": model_selection.NewCategorical(70, 100, 120, 150),
			"classifier__weights":     model_selection.NewCategorical("uniform", "distance"),
			"classifier__algorithm":   model_selection.NewCategorical("auto", "ball_tree", "kd_tree", "brute"),
		}
	case MLP:
		space = model_selection.ParamSpace{
			"classifier__activation": model_selection.NewCategorical("logistic", "tanh", "relu"),
			"classifier__solver":     model_selection.NewCategorical("sgd", "adam"),
			"classifier__hidden_layer_sizes": model_selection.NewCategorical(
				[]int{100}, []int{150}, []int{100, 100}, []int{100, 150},
			),
		}
	default:
		return nil, errors.NewValidationError("family", "unknown family", string(name))
	}
	space[imputerStrategy] = model_selection.NewCategorical("mean", "median")
	return space, nil
}
