// Command ptyctl drives a running ptyhost server from the command line.
//
// Every subcommand talks to the REST API; the server address comes from
// --server or PTYHOST_SERVER.
//
//	ptyctl create --rows 40 --cols 120
//	ptyctl write tab_01J... 'ls -la' --enter
//	ptyctl read tab_01J... --follow
//	ptyctl attach tab_01J...
//
// attach puts the local terminal in raw mode and relays keystrokes and
// output until the shell exits. Ctrl-] detaches without closing the shell.
package main
