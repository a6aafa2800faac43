// workfeed is a terminal panel aggregating work notifications from
// GitHub, Microsoft Teams, Notion, and calendars into one feed.
package main

func main() {
	Execute()
}
