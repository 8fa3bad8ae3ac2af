// Package metrics は二値分類の評価指標を提供します。
// 交差検証のスコアラーはここで定義された関数を使用します。
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// logLossEpsilon は log(0) を避けるための確率のクリップ幅
const logLossEpsilon = 1e-15

// checkPair は入力ベクトルが空でなく同じ長さであることを確認する
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func checkBinary(op string, yTrue *mat.VecDense) (nPos int, err error) {
	for i := 0; i < yTrue.Len(); i++ {
		switch yTrue.AtVec(i) {
		case 1:
			nPos++
		case 0:
		default:
			return 0, errors.NewValueError(op, "y_true must contain only 0 and 1")
		}
	}
	return nPos, nil
}

// AUC は ROC曲線下面積（ROC-AUC）を計算する。
// 同順位のスコアには平均順位を与える（Mann-Whitney U 統計量）。
// y_true が片方のクラスしか含まない場合は定義できないため、
// UndefinedMetricWarning を発生させて 0.5 を返す。
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	nPos, err := checkBinary("AUC", yTrue)
	if err != nil {
		return 0, err
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return yPred.AtVec(order[a]) < yPred.AtVec(order[b])
	})

	// 同順位グループごとに平均順位を割り当て、陽性サンプルの順位和を求める
	rankSumPos := 0.0
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred.AtVec(order[j+1]) == yPred.AtVec(order[i]) {
			j++
		}
		avgRank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if yTrue.AtVec(order[k]) == 1 {
				rankSumPos += avgRank
			}
		}
		i = j + 1
	}

	u := rankSumPos - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg)), nil
}

// BinaryLogLoss は二値交差エントロピーを計算する。
// 予測確率は [eps, 1-eps] にクリップされる。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if _, err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yPred.AtVec(i), logLossEpsilon, 1-logLossEpsilon)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// Threshold は陽性クラス確率を閾値 0.5 でラベルに変換する
func Threshold(proba *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(proba.Len(), nil)
	for i := 0; i < proba.Len(); i++ {
		if proba.AtVec(i) >= 0.5 {
			out.SetVec(i, 1)
		}
	}
	return out
}
