// Package ensemble provides tree ensembles for binary classification:
// a second-order gradient boosting classifier with the binary:logistic
// objective and a bagged random forest.
package ensemble
