package model

// User-facing alert texts shared by the runner and the terminal client.
const (
	MsgConnectionError = "Erro de conexão"
	MsgLoadFailed      = "Erro ao carregar simulado"
	MsgFinalizeFailed  = "Erro ao finalizar simulado"
	MsgNoQuestions     = "Nenhuma questão encontrada para este simulado."
	FinalizePrompt     = "Tem certeza que deseja finalizar o simulado? Esta ação não pode ser desfeita."
)
