package config

type WorkerKeyStruct struct {
	FailedAnswerSavesQueue string
}

var WorkerKey = &WorkerKeyStruct{
	FailedAnswerSavesQueue: "simulado:failed_answer_saves",
}
