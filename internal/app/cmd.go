package app

// Command はアプリケーションの起動モード（サブコマンド）を表す。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。引数なしの場合もこれになる。
	CommandServe Command = "serve"
	// CommandWorker はアウトボックス中継と削除ジョブを動かすワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はスキーマのマイグレーションを実行する。"migrate down" で1つ戻す。
	CommandMigrate Command = "migrate"
	// CommandSeed は開発用のダミーデータを投入する。
	CommandSeed Command = "seed"
	// CommandHealthcheck は起動中のAPIサーバーの /health を確認する。
	// distrolessイメージにはcurlがないため、Dockerのヘルスチェックから呼ぶ。
	CommandHealthcheck Command = "healthcheck"
)

var knownCommands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandSeed):        CommandSeed,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はos.Args[1:]の先頭からサブコマンドを解析する。
// 引数が空、または未知のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := knownCommands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}

// migrateDown は "migrate down" が指定されたかを返す。
func migrateDown(args []string) bool {
	return len(args) > 1 && args[0] == string(CommandMigrate) && args[1] == "down"
}
