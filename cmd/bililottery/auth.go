package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bililottery/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored session cookies",
	Long: `Manage the bilibili session cookies used for authenticated crawls.

Cookies are stored in the system keychain when available, with
environment variables (BILILOT_SESSDATA, BILILOT_BILI_JCT,
BILILOT_BUVID3) as a read-only fallback.

To get the cookie values:
1. Log into bilibili in your browser
2. Open Developer Tools (F12)
3. Go to Application/Storage > Cookies > https://www.bilibili.com
4. Copy the SESSDATA, bili_jct and buvid3 values`,
}

// authLoginCmd stores cookies in the keychain.
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store session cookies securely",
	RunE:  runAuthLogin,
}

// authLogoutCmd removes stored cookies.
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored session cookies",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auth.NewManager().Delete(); err != nil {
			return err
		}
		fmt.Println("Session cookies removed.")
		return nil
	},
}

// authStatusCmd shows whether a usable session is available.
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether session cookies are available",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := auth.NewManager().Load()
		if err != nil {
			fmt.Println("No session cookies found.")
			return nil
		}
		fmt.Printf("Session cookies present (SESSDATA %s, last modified %s).\n",
			maskValue(session.SessData), session.LastModified.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	sessData, err := promptValue(reader, "SESSDATA")
	if err != nil {
		return err
	}
	biliJct, err := promptValue(reader, "bili_jct")
	if err != nil {
		return err
	}
	buvid3, err := promptValue(reader, "buvid3 (optional)")
	if err != nil {
		return err
	}

	session := &auth.Session{SessData: sessData, BiliJct: biliJct, Buvid3: buvid3}
	if err := auth.NewManager().Save(session); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	fmt.Println("Session cookies stored.")
	return nil
}

func promptValue(reader *bufio.Reader, label string) (string, error) {
	fmt.Printf("%s: ", label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func maskValue(v string) string {
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + "..." + v[len(v)-4:]
}
