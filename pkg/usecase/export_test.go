package usecase

var ClampLimit = clampLimit
